package settings

// Key is a strongly-typed settings-registry entry (spec section 3:
// "Strongly-typed registry maps string keys to default values and
// domain"). T pins the Go type the stored JSON value decodes into.
type Key[T any] struct {
	Name    string
	Default T
}

func boolKey(name string, def bool) Key[bool]         { return Key[bool]{name, def} }
func intKey(name string, def int) Key[int]            { return Key[int]{name, def} }
func stringKey(name string, def string) Key[string]   { return Key[string]{name, def} }
func listKey(name string, def []string) Key[[]string] { return Key[[]string]{name, def} }

// Known settings keys, per spec section 6's "Settings document layout"
// (non-exhaustive, extension point — unknown keys read from disk are
// tolerated and retained verbatim).
var (
	EnableFloatingResults            = boolKey("EnableFloatingResults", false)
	EnableClipboardOptimiser         = boolKey("EnableClipboardOptimiser", true)
	EnableAutomaticImageOptimisations = boolKey("EnableAutomaticImageOptimisations", true)
	EnableAutomaticVideoOptimisations = boolKey("EnableAutomaticVideoOptimisations", true)
	EnableAutomaticPdfOptimisations   = boolKey("EnableAutomaticPdfOptimisations", true)
	PauseAutomaticOptimisations       = boolKey("PauseAutomaticOptimisations", false)
	AutoConvertDocumentsToPdf         = boolKey("AutoConvertDocumentsToPdf", false)
	EnableCrossAppAutomation          = boolKey("EnableCrossAppAutomation", true)
	EnableTeamsAdaptiveCards          = boolKey("EnableTeamsAdaptiveCards", false)

	MaxImageSizeMb    = intKey("MaxImageSizeMb", 50)
	MaxVideoSizeMb    = intKey("MaxVideoSizeMb", 2000)
	MaxPdfSizeMb      = intKey("MaxPdfSizeMb", 100)
	MaxImageFileCount = intKey("MaxImageFileCount", 10)
	MaxVideoFileCount = intKey("MaxVideoFileCount", 2)
	MaxPdfFileCount   = intKey("MaxPdfFileCount", 5)
	AutomationHttpPort = intKey("AutomationHttpPort", 13627)
	WorkerCount        = intKey("WorkerCount", 2)

	ImageDirs          = listKey("ImageDirs", nil)
	VideoDirs          = listKey("VideoDirs", nil)
	PdfDirs            = listKey("PdfDirs", nil)
	ImageFormatsToSkip = listKey("ImageFormatsToSkip", nil)
	VideoFormatsToSkip = listKey("VideoFormatsToSkip", nil)

	AutomationAccessToken = stringKey("AutomationAccessToken", "")

	// Image/video/PDF optimiser tuning keys used by the optimise
	// packages; not enumerated in spec section 6's non-exhaustive list
	// but required by the operations spec section 4.E/4.F/4.H describe.
	TargetJpegQuality               = intKey("TargetJpegQuality", 80)
	MinJpegFallbackQuality          = intKey("MinJpegFallbackQuality", 40)
	DownscaleRetina                 = boolKey("DownscaleRetina", false)
	RetinaLongEdgePixels            = intKey("RetinaLongEdgePixels", 2048)
	PreserveMetadata                = boolKey("PreserveMetadata", true)
	PreserveColorProfiles           = boolKey("PreserveColorProfiles", true)
	StripGPS                        = boolKey("StripGPS", false)
	RequireSizeImprovement          = boolKey("RequireSizeImprovement", true)
	EnablePerceptualGuard            = boolKey("EnablePerceptualGuard", true)
	SSIMThreshold                    = intKey("SSIMThreshold", 95) // percent, /100
	RejectWhenBelowThreshold         = boolKey("RejectWhenBelowThreshold", true)
	UseWICFastPath                   = boolKey("UseWICFastPath", true)
	MinFastPathSavingsPercent        = intKey("MinFastPathSavingsPercent", 5)
	EnableAdvancedCodecs             = boolKey("EnableAdvancedCodecs", false)
	MaxImageDimensionPixels          = intKey("MaxImageDimensionPixels", 12000)
	MaxImagePixelCount               = intKey("MaxImagePixelCount", 100_000_000)
	EnableCropSuggestions            = boolKey("EnableCropSuggestions", false)
	CropSegmentationModelPath        = stringKey("CropSegmentationModelPath", "")

	UseHardwareAcceleration          = boolKey("UseHardwareAcceleration", true)
	ForceMp4                         = boolKey("ForceMp4", false)
	RequireSizeReduction             = boolKey("RequireSizeReduction", true)
	Aggressive                       = boolKey("Aggressive", false)
	HardwareBitrateReductionRatio    = intKey("HardwareBitrateReductionRatioPct", 60)
	HardwareMinimumSavingsPercent    = intKey("HardwareMinimumSavingsPercent", 10)
	HardwareBitrateRetryReductionPct = intKey("HardwareBitrateRetryReductionPct", 15)
	HardwareBitrateRetryLimit        = intKey("HardwareBitrateRetryLimit", 3)
	TwoPassMinimumDurationSeconds    = intKey("TwoPassMinimumDurationSeconds", 60)
	VideoCodecPriority               = listKey("VideoCodecPriority", []string{"av1", "vp9", "hevc", "h264"})

	LinearisePdf   = boolKey("LinearisePdf", true)
	StripPdfMetadata = boolKey("StripPdfMetadata", true)

	OutputReplaceOriginal       = boolKey("OutputReplaceOriginal", false)
	OutputDeleteConvertedSource = boolKey("OutputDeleteConvertedSource", false)
)
