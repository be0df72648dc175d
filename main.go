package main

import "github.com/sheikhmuhammadzain/dataanalytics/cmd"

func main() {
	cmd.Execute()
}
