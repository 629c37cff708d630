// Command nlpeval evaluates intent and entity classifiers against a
// labeled corpus and maintains their stored models.
package main

import "github.com/ahrav/go-nlpeval/internal/cli"

func main() {
	cli.Execute()
}
