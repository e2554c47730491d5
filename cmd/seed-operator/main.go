package main

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/playmatatu/poolphys/internal/config"
	"github.com/playmatatu/poolphys/internal/database"
	"github.com/playmatatu/poolphys/internal/operator"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	name := os.Getenv("OPERATOR_NAME")
	if name == "" {
		name = "operator"
		log.Printf("Using default operator name: %s", name)
	}

	token := os.Getenv("OPERATOR_TOKEN")
	if token == "" {
		token = "change-me-in-production"
		log.Printf("WARNING: Using default operator token. Set OPERATOR_TOKEN env var in production!")
	}

	displayName := os.Getenv("OPERATOR_DISPLAY_NAME")
	if displayName == "" {
		displayName = "Table Operator"
	}
	roles := []string{"operator"}
	allowedIPs := []string{} // Empty = allow from any IP
	if ips := os.Getenv("OPERATOR_ALLOWED_IPS"); ips != "" {
		for _, ip := range strings.Split(ips, ",") {
			if ip = strings.TrimSpace(ip); ip != "" {
				allowedIPs = append(allowedIPs, ip)
			}
		}
	}

	if err := operator.Upsert(db, name, displayName, token, roles, allowedIPs); err != nil {
		log.Fatalf("Failed to create operator account: %v", err)
	}

	log.Printf("✓ Operator account created/updated successfully")
	log.Printf("  Name: %s", name)
	log.Printf("  Display Name: %s", displayName)
	log.Printf("  Roles: %v", roles)
	log.Printf("  Allowed IPs: %v", allowedIPs)
	log.Println("\nExchange the token for a JWT with POST /api/v1/auth/token")
}
