package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/trackfit/backend/internal/common/bootstrap"
)

func main() {
	gin.SetMode(gin.ReleaseMode)

	app, err := bootstrap.NewWebApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "web: %v\n", err)
		os.Exit(1)
	}

	app.Run()
}
