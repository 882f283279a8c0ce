// cmd/gentoken/main.go: emite un JWT de desarrollo firmado con JWT_SECRET.
// En produccion los tokens los emite el proveedor de identidad.
// Uso: go run ./cmd/gentoken -rol supervisor -ttl 8h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"cajapos/internal/config"
	"cajapos/internal/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func main() {
	rol := flag.String("rol", "administrador", "cajero | supervisor | administrador")
	user := flag.String("user", "", "user_id (uuid); vacio genera uno")
	ttl := flag.Duration("ttl", 8*time.Hour, "vigencia del token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.Env == "production" {
		fmt.Fprintln(os.Stderr, "gentoken no se usa en production")
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET vacio")
		os.Exit(1)
	}

	userID := *user
	if userID == "" {
		userID = uuid.NewString()
	}
	if _, err := uuid.Parse(userID); err != nil {
		fmt.Fprintln(os.Stderr, "user_id invalido:", err)
		os.Exit(1)
	}

	now := time.Now()
	claims := middleware.JWTClaims{
		UserID:   userID,
		Username: "dev-" + *rol,
		Rol:      *rol,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign:", err)
		os.Exit(1)
	}
	fmt.Println(signed)
}
