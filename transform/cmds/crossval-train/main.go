package main

import (
	"fmt"
	"log"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/foldmatch/foldmatch/modelfile"
	"github.com/foldmatch/foldmatch/template"
	"github.com/foldmatch/foldmatch/transform"
)

func fail(err error) {
	if err != nil {
		log.Fatalln(err)
	}
}

func main() {
	args := struct {
		Input       string `arg:"positional,required" help:"template list (.json or .gob, optionally .gz)"`
		Output      string `arg:"positional,required" help:"output model file"`
		Description string `arg:"--description" help:"sub-model descriptor trained per partition"`
		LeaveOneOut bool   `arg:"--leave-one-out" help:"use subject-wise rotating exclusion"`
	}{
		Description: "Centroid",
	}
	arg.MustParse(&args)

	data, err := template.ReadList(args.Input)
	fail(err)

	deduped := data.Dedupe()
	if removed := len(data) - len(deduped); removed > 0 {
		log.Printf("dropped %d duplicate templates", removed)
	}

	cv := transform.NewCrossValidate(args.Description, args.LeaveOneOut)
	start := time.Now()
	fail(cv.Train(deduped))
	log.Printf("trained %d partitions on %d templates in %s", cv.Size(), len(deduped), time.Since(start))

	descriptor := fmt.Sprintf("CrossValidate(description=%s,leaveOneOut=%t)", args.Description, args.LeaveOneOut)
	fail(modelfile.Save(args.Output, descriptor, cv))
	log.Printf("wrote %s", args.Output)
}
