package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	arg "github.com/alexflint/go-arg"
	"github.com/foldmatch/foldmatch/distance"
	"github.com/foldmatch/foldmatch/modelfile"
	"github.com/foldmatch/foldmatch/template"
	"github.com/foldmatch/foldmatch/transform"
)

func fail(err error) {
	if err != nil {
		log.Fatalln(err)
	}
}

func loadFilters(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var filters map[string][]string
	if err := json.NewDecoder(f).Decode(&filters); err != nil {
		return err
	}
	distance.SetFilters(filters)
	return nil
}

func project(model transform.Transform, data template.List) template.List {
	out := make(template.List, 0, len(data))
	for _, t := range data {
		p, err := model.Project(t)
		fail(err)
		out = append(out, p)
	}
	return out
}

func main() {
	args := struct {
		Model     string `arg:"positional,required" help:"trained model file"`
		Targets   string `arg:"positional,required" help:"target template list"`
		Queries   string `arg:"positional,required" help:"query template list"`
		Distances string `arg:"--distances" help:"semicolon-separated distance names"`
		Filters   string `arg:"--filters" help:"JSON filter configuration (metadata key to accepted values)"`
		Keys      string `arg:"--keys" help:"metadata keys for the Metadata distance"`
	}{
		Distances: "CrossValidate",
	}
	arg.MustParse(&args)

	fail(loadFilters(args.Filters))

	model, descriptor, err := modelfile.Load(args.Model)
	fail(err)
	log.Printf("loaded %s", descriptor)

	targets, err := template.ReadList(args.Targets)
	fail(err)
	queries, err := template.ReadList(args.Queries)
	fail(err)

	var distances []distance.Distance
	for _, name := range strings.Split(args.Distances, ";") {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		d, err := distance.Make(name, map[string]string{"keys": args.Keys})
		fail(err)
		distances = append(distances, d)
	}

	targets = project(model, targets)
	queries = project(model, queries)

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	for qi, q := range queries {
		for ti, t := range targets {
			var score float64
			for _, d := range distances {
				s := d.Compare(t, q)
				if s <= distance.MinScore {
					score = distance.MinScore
					break
				}
				score += s
			}
			fmt.Fprintf(w, "%d\t%d\t%g\n", qi, ti, score)
		}
	}
}
