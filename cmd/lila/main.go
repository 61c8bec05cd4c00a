// Command lila wraps the embedding API in a REPL and a batch file runner.
package main

func main() {
	execute()
}
