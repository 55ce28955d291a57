// Synthetic data tool for exercising a running Harrier instance.
//
// Usage:
//
//	go run cmd/scangen/main.go -url http://localhost:8080 -tenant demo -customers 20
//
// This tool:
//  1. Generates customers with plausible Kenyan transaction histories
//  2. Plants known fraud patterns for a subset of customers
//  3. Ingests everything through the HTTP API
//  4. Triggers a scan and prints the alert summary
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"
)

type customerReq struct {
	CustomerID string `json:"customerId"`
	FullName   string `json:"fullName"`
}

type txReq struct {
	TransactionID   string   `json:"transactionId"`
	CustomerID      string   `json:"customerId"`
	Type            string   `json:"type"`
	Amount          float64  `json:"amount"`
	Currency        string   `json:"currency"`
	TransactionDate string   `json:"transactionDate"`
	Location        string   `json:"location,omitempty"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	PayeeID         string   `json:"payeeId,omitempty"`
	MCC             int      `json:"mcc,omitempty"`
}

type scanResp struct {
	Summary struct {
		Transactions int `json:"transactions"`
		Alerts       int `json:"alerts"`
		HighRisk     int `json:"highRisk"`
	} `json:"summary"`
	Alerts []struct {
		Rule       string `json:"rule"`
		CustomerID string `json:"customerId"`
		Details    string `json:"details"`
	} `json:"alerts"`
}

var firstNames = []string{"Wanjiru", "Otieno", "Achieng", "Kamau", "Njeri", "Mutua", "Chebet", "Kiprop", "Amina", "Barasa"}
var lastNames = []string{"Mwangi", "Odhiambo", "Kariuki", "Wekesa", "Koech", "Njoroge", "Hassan", "Omondi", "Cherono", "Gitau"}

var cities = []struct {
	name     string
	lat, lon float64
}{
	{"Nairobi", -1.2921, 36.8219},
	{"Mombasa", -4.0435, 39.6682},
	{"Kisumu", -0.0917, 34.7680},
	{"Nakuru", -0.3031, 36.0800},
	{"Eldoret", 0.5143, 35.2698},
}

const timeFormat = "2006-01-02 15:04:05"

func main() {
	url := flag.String("url", "http://localhost:8080", "Harrier base URL")
	tenant := flag.String("tenant", "demo", "tenant ID")
	customers := flag.Int("customers", 20, "number of customers to generate")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	client := &http.Client{Timeout: 30 * time.Second}
	base := time.Now().AddDate(0, -1, 0).Truncate(time.Hour)

	var txTotal int
	for i := 0; i < *customers; i++ {
		custID := fmt.Sprintf("CUST-%04d", i+1)
		name := firstNames[rng.Intn(len(firstNames))] + " " + lastNames[rng.Intn(len(lastNames))]

		if err := post(client, *url+"/customers", *tenant, customerReq{CustomerID: custID, FullName: name}); err != nil {
			fmt.Fprintf(os.Stderr, "customer %s: %v\n", custID, err)
			os.Exit(1)
		}

		txns := normalHistory(rng, custID, base)

		// Every fifth customer gets a planted fraud pattern
		if i%5 == 0 {
			txns = append(txns, plantPattern(rng, custID, base, i/5)...)
		}

		for _, tx := range txns {
			if err := post(client, *url+"/transactions", *tenant, tx); err != nil {
				fmt.Fprintf(os.Stderr, "transaction %s: %v\n", tx.TransactionID, err)
				os.Exit(1)
			}
		}
		txTotal += len(txns)
	}

	fmt.Printf("ingested %d customers, %d transactions\n", *customers, txTotal)

	// Trigger the scan
	req, err := http.NewRequest(http.MethodPost, *url+"/scan", bytes.NewReader([]byte("{}")))
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan request failed: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", *tenant)

	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var result scanResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fmt.Fprintf(os.Stderr, "scan response parse failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nscan: %d transactions, %d alerts (%d high risk)\n\n",
		result.Summary.Transactions, result.Summary.Alerts, result.Summary.HighRisk)

	byRule := map[string]int{}
	for _, a := range result.Alerts {
		byRule[a.Rule]++
	}
	for rule, n := range byRule {
		fmt.Printf("  %-30s %d\n", rule, n)
	}
}

// normalHistory generates unremarkable activity for one customer.
func normalHistory(rng *rand.Rand, custID string, base time.Time) []txReq {
	n := 5 + rng.Intn(10)
	txns := make([]txReq, 0, n)
	city := cities[rng.Intn(len(cities))]

	for i := 0; i < n; i++ {
		at := base.Add(time.Duration(rng.Intn(30*24)) * time.Hour).Add(time.Duration(8+rng.Intn(12)) * time.Hour)
		lat, lon := jitter(rng, city.lat), jitter(rng, city.lon)
		txns = append(txns, txReq{
			TransactionID:   fmt.Sprintf("%s-N%03d", custID, i),
			CustomerID:      custID,
			Type:            pick(rng, "POS", "ATM", "Mobile-Money", "Online"),
			Amount:          float64(500 + rng.Intn(40000)),
			Currency:        "KES",
			TransactionDate: at.Format(timeFormat),
			Location:        city.name,
			Latitude:        &lat,
			Longitude:       &lon,
			PayeeID:         fmt.Sprintf("PAYEE-%03d", rng.Intn(50)),
			MCC:             5411,
		})
	}
	return txns
}

// plantPattern injects one known fraud pattern, rotating through a few
// of the catalogue rules.
func plantPattern(rng *rand.Rand, custID string, base time.Time, variant int) []txReq {
	at := base.Add(14 * 24 * time.Hour)
	nairobi, mombasa := cities[0], cities[1]

	switch variant % 4 {
	case 0: // ATM pair, 30 minutes, Nairobi to Mombasa
		return []txReq{
			atmAt(custID+"-F0", custID, at, nairobi.lat, nairobi.lon, 20000),
			atmAt(custID+"-F1", custID, at.Add(30*time.Minute), mombasa.lat, mombasa.lon, 25000),
		}

	case 1: // structuring: four transfers under 100k to one payee
		var txns []txReq
		for i := 0; i < 4; i++ {
			txns = append(txns, txReq{
				TransactionID:   fmt.Sprintf("%s-F%d", custID, i),
				CustomerID:      custID,
				Type:            "Mobile-Money",
				Amount:          90000,
				Currency:        "KES",
				TransactionDate: at.Add(time.Duration(i*20) * time.Minute).Format(timeFormat),
				PayeeID:         "PAYEE-STRUCT",
			})
		}
		return txns

	case 2: // night-time high value
		night := at.Truncate(24 * time.Hour).Add(2 * time.Hour)
		return []txReq{{
			TransactionID:   custID + "-F0",
			CustomerID:      custID,
			Type:            "Online",
			Amount:          120000,
			Currency:        "KES",
			TransactionDate: night.Format(timeFormat),
		}}

	default: // gambling burst: five POS MCC 7995 in one day
		var txns []txReq
		for i := 0; i < 5; i++ {
			txns = append(txns, txReq{
				TransactionID:   fmt.Sprintf("%s-F%d", custID, i),
				CustomerID:      custID,
				Type:            "POS",
				Amount:          float64(2000 + rng.Intn(8000)),
				Currency:        "KES",
				TransactionDate: at.Add(time.Duration(i*3) * time.Hour).Format(timeFormat),
				MCC:             7995,
			})
		}
		return txns
	}
}

func atmAt(id, custID string, at time.Time, lat, lon, amount float64) txReq {
	return txReq{
		TransactionID:   id,
		CustomerID:      custID,
		Type:            "ATM",
		Amount:          amount,
		Currency:        "KES",
		TransactionDate: at.Format(timeFormat),
		Latitude:        &lat,
		Longitude:       &lon,
	}
}

func jitter(rng *rand.Rand, v float64) float64 {
	return v + (rng.Float64()-0.5)*0.05
}

func pick(rng *rand.Rand, options ...string) string {
	return options[rng.Intn(len(options))]
}

func post(client *http.Client, url, tenant string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenant)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
