package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/yashgoel75/cleit-cdc/internal/logger"
)

func main() {
	_ = godotenv.Load()
	if err := logger.Init(logger.ConfigFromEnv()); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
