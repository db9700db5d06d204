// Package pdf implements the PDF Optimiser: validity/encryption gating,
// a content-density-driven Ghostscript preset, optional linearisation,
// and a metadata-stripping pass, orchestrated the same way the video
// optimiser orchestrates ffmpeg — an external tool invoked via the
// shared Process Runner with no shell involved.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/clopapp/clop/internal/coreerr"
	"github.com/clopapp/clop/internal/corepath"
	"github.com/clopapp/clop/internal/optimise"
	"github.com/clopapp/clop/internal/outputplan"
	"github.com/clopapp/clop/internal/procrunner"
	"github.com/clopapp/clop/internal/request"
	"github.com/clopapp/clop/internal/settings"
)

var errNotAPDF = errors.New("pdf: not a PDF file (missing %PDF- header)")

// stripMetadataPdfmark blanks every standard /DOCINFO field via a
// Ghostscript pdfmark operator rather than relying on any Ghostscript
// flag — pdfmark is the documented mechanism for rewriting a PDF's
// document info dictionary.
const stripMetadataPdfmark = "[ /Title () /Author () /Subject () /Keywords () /Creator () /Producer () /CreationDate () /ModDate () /DOCINFO pdfmark"

// Optimiser implements optimise.Optimiser for corepath.Pdf.
type Optimiser struct {
	Settings            *settings.Store
	GhostscriptPath     string
}

func New(store *settings.Store, ghostscriptPath string) *Optimiser {
	if ghostscriptPath == "" {
		ghostscriptPath = "gs"
	}
	return &Optimiser{Settings: store, GhostscriptPath: ghostscriptPath}
}

func (o *Optimiser) ItemType() corepath.ItemType { return corepath.Pdf }

func (o *Optimiser) Optimise(ctx context.Context, req request.Request, report optimise.ProgressFunc) (request.Result, error) {
	start := time.Now()
	report(request.Progress{RequestID: req.ID, Percent: 5, Phase: "Inspecting"})

	source := req.SourcePath
	info, err := inspect(source.Value())
	if err != nil {
		if errors.Is(err, errNotAPDF) {
			return request.Result{}, coreerr.New(coreerr.InvalidFormat, err.Error())
		}
		return request.Result{}, coreerr.Wrap(coreerr.SourceNotFound, "reading pdf", err)
	}
	if info.Encrypted {
		return request.Result{}, coreerr.New(coreerr.EncryptedInput, "pdf is encrypted; skipping")
	}

	preset, switches := presetSwitches(info.profile())

	outPlan := outputplan.Resolve(source, ".pdf", outputplan.Policy{
		ReplaceOriginal:       settings.Get(o.Settings, settings.OutputReplaceOriginal),
		DeleteConvertedSource: settings.Get(o.Settings, settings.OutputDeleteConvertedSource),
	})
	destTmp := outPlan.Destination.Value() + ".clop-tmp.pdf"
	defer os.Remove(destTmp)

	args := []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dNOPAUSE", "-dBATCH", "-dQUIET",
		"-dPDFSETTINGS=" + preset,
	}
	args = append(args, switches...)
	if settings.Get(o.Settings, settings.LinearisePdf) {
		args = append(args, "-dFastWebView=true")
	}
	args = append(args, "-sOutputFile="+destTmp)
	if settings.Get(o.Settings, settings.StripPdfMetadata) {
		// pdfmark's /DOCINFO entry overwrites the document info
		// dictionary pdfwrite emits; blanking every field here is how
		// Ghostscript strips metadata, not a rendering flag. -c executes
		// before -f opens source, so the blanked dictionary is in effect
		// by the time pdfwrite starts writing destTmp.
		args = append(args, "-c", stripMetadataPdfmark, "-f", source.Value())
	} else {
		args = append(args, source.Value())
	}

	report(request.Progress{RequestID: req.ID, Percent: 20, Phase: "Rewriting"})

	var lastPage int
	_, err = procrunner.Run(ctx, o.GhostscriptPath, args, procrunner.Options{
		FailOnNonZero: true,
		OnStdoutLine: func(line string) {
			if n, ok := parsePageLine(line); ok {
				lastPage = n
				pct := 20.0
				if info.PageCount > 0 {
					pct = 20 + float64(lastPage)/float64(info.PageCount)*65
				}
				report(request.Progress{RequestID: req.ID, Percent: pct, Phase: "Rewriting"})
			}
		},
	})
	if err != nil {
		return request.Result{}, coreerr.Wrap(coreerr.ToolFailed, "ghostscript rewrite failed", err)
	}

	report(request.Progress{RequestID: req.ID, Percent: 90, Phase: "Finalising"})

	outInfo, statErr := os.Stat(destTmp)
	if statErr != nil {
		return request.Result{}, coreerr.Wrap(coreerr.IOFailure, "stat ghostscript output", statErr)
	}
	if settings.Get(o.Settings, settings.RequireSizeImprovement) && outInfo.Size() >= info.SizeBytes {
		return succeededWithSource(req, start, "ghostscript output was not smaller than the source"), coreerr.New(coreerr.NoSizeImprovement, "no size improvement")
	}

	if err := os.Rename(destTmp, outPlan.Destination.Value()); err != nil {
		return request.Result{}, coreerr.Wrap(coreerr.IOFailure, "finalising output", err)
	}
	if outPlan.DeleteSource && outPlan.Destination.Value() != source.Value() {
		_ = os.Remove(source.Value())
	}

	report(request.Progress{RequestID: req.ID, Percent: 100, Phase: "Done"})
	outPath := outPlan.Destination
	return request.Result{
		RequestID:  req.ID,
		Status:     request.Succeeded,
		OutputPath: &outPath,
		Message:    fmt.Sprintf("%d -> %d bytes", info.SizeBytes, outInfo.Size()),
		Duration:   time.Since(start),
	}, nil
}

func succeededWithSource(req request.Request, start time.Time, message string) request.Result {
	src := req.SourcePath
	return request.Result{
		RequestID:  req.ID,
		Status:     request.Succeeded,
		OutputPath: &src,
		Message:    message,
		Duration:   time.Since(start),
	}
}

// presetSwitches maps a content profile to a Ghostscript /PDFSETTINGS
// preset plus extra per-profile switches.
func presetSwitches(profile contentProfile) (string, []string) {
	switch profile {
	case profileGraphics:
		return "/ebook", []string{"-dColorImageResolution=150", "-dGrayImageResolution=150"}
	case profileText:
		return "/printer", []string{"-dSubsetFonts=true", "-dCompressFonts=true"}
	default:
		return "/ebook", []string{"-dColorImageResolution=200"}
	}
}

var pageLineRe = regexp.MustCompile(`^Page (\d+)$`)

func parsePageLine(line string) (int, bool) {
	m := pageLineRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
