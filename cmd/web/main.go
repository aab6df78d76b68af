package main

import "commune_backend/internal/app"

func main() {
	app.Run()
}
