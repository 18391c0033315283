package main

import "github.com/JakeFAU/guc-preloader/cmd"

func main() {
	cmd.Execute()
}
