// Package document implements the Document Optimiser (spec section
// 4.I): office documents are converted to PDF in a scratch workspace by
// a headless converter, then handed to the PDF Optimiser under the same
// request ID and metadata so the rest of the pipeline (output planning,
// progress, validation) is shared rather than duplicated.
package document

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/clopapp/clop/internal/coreerr"
	"github.com/clopapp/clop/internal/corepath"
	"github.com/clopapp/clop/internal/optimise"
	"github.com/clopapp/clop/internal/optimise/pdf"
	"github.com/clopapp/clop/internal/outputplan"
	"github.com/clopapp/clop/internal/procrunner"
	"github.com/clopapp/clop/internal/request"
	"github.com/clopapp/clop/internal/settings"
)

// Optimiser implements optimise.Optimiser for corepath.Document.
type Optimiser struct {
	ConverterPath string
	PDFOptimiser  *pdf.Optimiser
}

func New(converterPath string, pdfOptimiser *pdf.Optimiser) *Optimiser {
	if converterPath == "" {
		converterPath = "soffice"
	}
	return &Optimiser{ConverterPath: converterPath, PDFOptimiser: pdfOptimiser}
}

func (o *Optimiser) ItemType() corepath.ItemType { return corepath.Document }

func (o *Optimiser) Optimise(ctx context.Context, req request.Request, report optimise.ProgressFunc) (request.Result, error) {
	source := req.SourcePath
	if !corepath.IsDocumentExtension(source.Extension()) {
		return request.Result{}, coreerr.New(coreerr.UnsupportedType, "not a convertible office document: "+source.Extension())
	}

	report(request.Progress{RequestID: req.ID, Percent: 5, Phase: "Converting"})

	workspace, err := os.MkdirTemp("", "clop-doc-*")
	if err != nil {
		return request.Result{}, coreerr.Wrap(coreerr.IOFailure, "creating scratch workspace", err)
	}
	defer os.RemoveAll(workspace)

	_, err = procrunner.Run(ctx, o.ConverterPath, []string{
		"--headless", "--norestore",
		"--convert-to", "pdf",
		"--outdir", workspace,
		source.Value(),
	}, procrunner.Options{FailOnNonZero: true, Timeout: 2 * time.Minute})
	if err != nil {
		return request.Result{}, coreerr.Wrap(coreerr.ToolFailed, "headless document conversion failed", err)
	}

	convertedPath, err := corepath.From(filepath.Join(workspace, source.Stem()+".pdf"))
	if err != nil || !convertedPath.Exists() {
		return request.Result{}, coreerr.New(coreerr.ToolFailed, "converter did not produce a PDF")
	}

	report(request.Progress{RequestID: req.ID, Percent: 40, Phase: "Optimising"})

	pdfReq := request.Request{
		ID:         req.ID,
		ItemType:   corepath.Pdf,
		SourcePath: convertedPath,
		Metadata:   req.Metadata,
	}
	result, pdfErr := o.PDFOptimiser.Optimise(ctx, pdfReq, func(p request.Progress) {
		report(request.Progress{RequestID: req.ID, Percent: 40 + p.Percent*0.6, Phase: p.Phase})
	})

	// The PDF optimiser wrote its result inside the scratch workspace,
	// which is removed on return — relocate it to the output planner's
	// destination next to the original document before that happens.
	if result.OutputPath != nil {
		outPlan := outputplan.Resolve(source, ".pdf", outputplan.Policy{
			ReplaceOriginal:       settings.Get(o.PDFOptimiser.Settings, settings.OutputReplaceOriginal),
			DeleteConvertedSource: settings.Get(o.PDFOptimiser.Settings, settings.OutputDeleteConvertedSource),
		})
		if renameErr := os.Rename(result.OutputPath.Value(), outPlan.Destination.Value()); renameErr == nil {
			finalDest := outPlan.Destination
			result.OutputPath = &finalDest
			if outPlan.DeleteSource {
				_ = os.Remove(source.Value())
			}
		}
	}
	return result, pdfErr
}
