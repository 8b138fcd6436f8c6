package main

import "dmvagent/internal/app"

func main() {
	app.Main()
}
