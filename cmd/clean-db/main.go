package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// clean-db resets a development environment: it empties the tenant registry
// and drops every tenant store schema on the content cluster. Never point it
// at anything you want to keep.
func main() {
	ctx := context.Background()

	registryURL := os.Getenv("PRESSPLANE_REGISTRY_URL")
	contentURL := os.Getenv("PRESSPLANE_CONTENT_URL")
	if registryURL == "" || contentURL == "" {
		log.Fatal("set PRESSPLANE_REGISTRY_URL and PRESSPLANE_CONTENT_URL")
	}

	registry, err := sql.Open("pgx", registryURL)
	if err != nil {
		log.Fatalf("Failed to connect to registry: %v", err)
	}
	defer registry.Close()

	content, err := sql.Open("pgx", contentURL)
	if err != nil {
		log.Fatalf("Failed to connect to content cluster: %v", err)
	}
	defer content.Close()

	fmt.Println("Cleaning registry...")
	if _, err := registry.ExecContext(ctx, "TRUNCATE TABLE tenants CASCADE"); err != nil {
		fmt.Printf("Warning: failed to truncate tenants: %v\n", err)
	} else {
		fmt.Println("✓ Cleared tenants")
	}

	fmt.Println("\nDropping tenant stores...")
	rows, err := content.QueryContext(ctx, `
		SELECT schema_name FROM information_schema.schemata
		WHERE schema_name LIKE 't\_%'
		ORDER BY schema_name
	`)
	if err != nil {
		log.Fatalf("Failed to list store schemas: %v", err)
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			log.Fatalf("Failed to scan schema name: %v", err)
		}
		schemas = append(schemas, name)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("Failed to list store schemas: %v", err)
	}

	for _, schema := range schemas {
		_, err := content.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %q CASCADE", schema))
		if err != nil {
			fmt.Printf("Warning: failed to drop %s: %v\n", schema, err)
		} else {
			fmt.Printf("✓ Dropped %s\n", schema)
		}
	}

	fmt.Println("\n✓✓✓ Database cleaned successfully!")
}
