// Package demo generates synthetic transaction datasets and walks them
// through the upload and query endpoints.
package demo

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math/rand"
	"time"

	"github.com/parquet-go/parquet-go"
)

// Transaction is one synthetic ledger row.
type Transaction struct {
	TransactionID string  `parquet:"transaction_id"`
	Date          string  `parquet:"date"`
	Amount        float64 `parquet:"amount"`
	Category      string  `parquet:"category"`
	Merchant      string  `parquet:"merchant"`
}

var categories = []string{"Groceries", "Transport", "Dining", "Utilities", "Entertainment", "Health"}

var merchants = map[string][]string{
	"Groceries":     {"FreshMart", "GreenGrocer", "Corner Market"},
	"Transport":     {"Metro Transit", "CityCab", "FuelStop"},
	"Dining":        {"Bella Pasta", "Noodle House", "Cafe Aurora"},
	"Utilities":     {"PowerGrid Co", "AquaFlow", "NetLink"},
	"Entertainment": {"CinemaPlex", "StreamBox", "Arcade Alley"},
	"Health":        {"WellCare Pharmacy", "City Clinic"},
}

type Generator struct {
	rnd   *rand.Rand
	start time.Time
	seq   int
}

// NewGenerator produces a deterministic stream for a given seed.
func NewGenerator(seed int64, start time.Time) *Generator {
	return &Generator{
		rnd:   rand.New(rand.NewSource(seed)),
		start: start,
	}
}

func (g *Generator) Next() Transaction {
	g.seq++
	category := categories[g.rnd.Intn(len(categories))]
	names := merchants[category]
	day := g.rnd.Intn(90)

	return Transaction{
		TransactionID: fmt.Sprintf("T%06d", 100000+g.seq),
		Date:          g.start.AddDate(0, 0, day).Format("2006-01-02"),
		Amount:        float64(g.rnd.Intn(29000)+100) / 100,
		Category:      category,
		Merchant:      names[g.rnd.Intn(len(names))],
	}
}

func (g *Generator) Take(n int) []Transaction {
	out := make([]Transaction, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.Next())
	}
	return out
}

// EncodeCSV renders transactions as an uploadable CSV file.
func EncodeCSV(transactions []Transaction) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"transaction_id", "date", "amount", "category", "merchant"}); err != nil {
		return nil, err
	}
	for _, tx := range transactions {
		record := []string{
			tx.TransactionID,
			tx.Date,
			fmt.Sprintf("$%.2f", tx.Amount),
			tx.Category,
			tx.Merchant,
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeParquet renders transactions as an uploadable Parquet file.
func EncodeParquet(transactions []Transaction) ([]byte, error) {
	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[Transaction](&buf)
	if _, err := writer.Write(transactions); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SampleQuestions covers both answering paths against the generated data.
func SampleQuestions(transactions []Transaction) []string {
	questions := []string{
		"Give me an overview of my spending",
		"What is the total per category?",
		"Which category had the highest spending?",
	}
	if len(transactions) > 0 {
		questions = append(questions, fmt.Sprintf("What is the amount for %s?", transactions[0].TransactionID))
	}
	return questions
}
