package main

import (
	"encoding/json/v2"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/narratorapp/narrator-server/internal/domain"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/Narrator/data/plans")
	}

	opts := badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Plan Database Inspection ===")
	fmt.Println()

	planCount := 0
	staleCount := 0
	completeCount := 0
	totalSegments := 0
	oversizedSegments := 0
	chapters := map[string]int{}

	err = db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = []byte("plan:")
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek([]byte("plan:")); it.ValidForPrefix([]byte("plan:")); it.Next() {
			item := it.Item()
			key := string(item.Key())

			// Skip secondary index keys.
			if strings.HasPrefix(key, "plan:idx:") {
				continue
			}

			err := item.Value(func(val []byte) error {
				var plan domain.Plan
				if err := json.Unmarshal(val, &plan); err != nil {
					return err
				}

				planCount++
				chapters[plan.ChapterID]++
				totalSegments += len(plan.Segments)
				if plan.Stale {
					staleCount++
				}
				if plan.IsComplete {
					completeCount++
				}
				for _, seg := range plan.Segments {
					if seg.Oversized {
						oversizedSegments++
					}
				}

				// Show the first few plans in detail.
				if planCount <= 3 {
					fmt.Printf("Plan: %s\n", plan.ID)
					fmt.Printf("  Chapter: %s\n", plan.ChapterID)
					fmt.Printf("  Segments: %d\n", len(plan.Segments))
					fmt.Printf("  Complete: %v  Stale: %v\n", plan.IsComplete, plan.Stale)
					fmt.Printf("  Updated: %s\n", plan.UpdatedAt.Format("2006-01-02 15:04:05"))
					for i, seg := range plan.Segments {
						if i >= 5 {
							fmt.Printf("    ... and %d more segments\n", len(plan.Segments)-5)
							break
						}
						preview := seg.Text
						if len(preview) > 60 {
							preview = preview[:60] + "..."
						}
						fmt.Printf("    [%d] %s (%d-%d) %q\n",
							seg.Order, seg.ID, seg.StartIndex, seg.EndIndex, preview)
					}
					fmt.Println()
				}

				return nil
			})
			if err != nil {
				log.Printf("Error reading plan %s: %v", key, err)
			}
		}
		return nil
	})

	if err != nil {
		log.Fatalf("Error iterating database: %v", err)
	}

	fmt.Println("=== Summary ===")
	fmt.Printf("Total plans: %d\n", planCount)
	fmt.Printf("Chapters: %d\n", len(chapters))
	fmt.Printf("Stale plans: %d\n", staleCount)
	fmt.Printf("Complete plans: %d\n", completeCount)
	fmt.Printf("Total segments: %d\n", totalSegments)
	fmt.Printf("Oversized segments: %d\n", oversizedSegments)
	if planCount > 0 {
		fmt.Printf("Average segments per plan: %.1f\n", float64(totalSegments)/float64(planCount))
	}
}
