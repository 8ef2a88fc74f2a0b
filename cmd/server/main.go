package main

import "edugate/internal/app"

func main() {
	app.Run()
}
