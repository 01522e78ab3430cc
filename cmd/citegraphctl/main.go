package main

import (
	"fmt"
	"os"
)

func main() {
	rootCmd, closeStore := newRootCmd(os.Stdout)
	err := rootCmd.Execute()
	closeStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
