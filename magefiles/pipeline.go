//go:build mage

package main

import (
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Pipeline runs the CLI stages against the local data directory.
type Pipeline mg.Namespace

const dataDir = "data"

// corpusPath returns the corpus to run on, from CITEGRAPH_CORPUS_PATH or the
// default location.
func corpusPath() string {
	if p := os.Getenv("CITEGRAPH_CORPUS_PATH"); p != "" {
		return p
	}
	return "data/corpus_cleaned.csv"
}

func citegraph(args ...string) error {
	args = append([]string{"--data-dir", dataDir}, args...)
	return sh.RunV("bin/"+binName, args...)
}

// Harvest fetches citation timelines for the corpus.
func (Pipeline) Harvest() error {
	mg.Deps(Build, Init)
	return citegraph("harvest", "--corpus", corpusPath(), "--metrics-file", "data/harvest.prom")
}

// Graph builds the global tables and the yearly partitions.
func (Pipeline) Graph() error {
	mg.Deps(Build, Init)
	if err := citegraph("build", "--corpus", corpusPath()); err != nil {
		return err
	}
	return citegraph("partition")
}

// Index loads the partitions into the SQLite index.
func (Pipeline) Index() error {
	mg.Deps(Pipeline.Graph)
	return citegraph("index")
}

// All runs harvest, graph, and index in order.
func (Pipeline) All() {
	mg.SerialDeps(Pipeline.Harvest, Pipeline.Graph, Pipeline.Index)
}
