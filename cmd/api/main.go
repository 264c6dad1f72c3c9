package main

import (
	"context"
	"fmt"
	"os"

	"github.com/trackfit/backend/internal/common/bootstrap"
)

func main() {
	app, err := bootstrap.NewAPIApp(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "api: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	app.Run()
}
