package main

// @title           Bookshelf Catalog API
// @version         1.0
// @description     JSON API over the signed-in user's book catalog.

// @contact.name   Sina Niyavarzi
// @contact.email  sinaniya@gmail.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api

import (
	"fmt"
	"os"
)

const appVersion = "0.2.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
