package main

// @title           Lapis API
// @version         1.0
// @description     Retrieval-augmented generation backend. Lapis chunks and embeds documents into a vector index and answers questions from the stored chunks.

// @host      localhost:4000
// @BasePath  /
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"os"

	"github.com/lapis-labs/lapis-backend/internal/adapters/driving/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
