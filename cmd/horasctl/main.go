package main

import "horas/internal/ctl"

func main() {
	ctl.Execute()
}
