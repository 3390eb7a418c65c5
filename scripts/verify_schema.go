package main

import (
	"fmt"
	"log"
	"os"

	"advisor-core/pkg/db"
)

// Usage: go run scripts/verify_schema.go [path]
func main() {
	dbPath := "./data/advisor.db"
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}
	fmt.Printf("Verifying database at: %s\n", dbPath)

	database, err := db.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer database.Close()

	for _, table := range []string{"chats", "chat_messages"} {
		var name string
		err := database.DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			fmt.Printf("❌ %s table MISSING\n", table)
			continue
		}
		fmt.Printf("✓ %s table exists\n", table)
	}

	rows, err := database.DB.Query("PRAGMA table_info(chats)")
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()
	found := false
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			def              any
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &def, &pk); err == nil && name == "updated_at" {
			found = true
		}
	}
	if found {
		fmt.Println("✓ chats.updated_at column exists")
	} else {
		fmt.Println("❌ chats.updated_at column MISSING (run the server once to migrate)")
	}
}
