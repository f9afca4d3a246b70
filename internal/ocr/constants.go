package ocr

import (
	"fmt"
	"strconv"

	"github.com/otiai10/gosseract/v2"
)

// PageSegMode controls how Tesseract partitions an image before recognition.
// It shares gosseract's type so values move freely between the two APIs.
type PageSegMode = gosseract.PageSegMode

// Page segmentation modes.
const (
	PSMOSDOnly       = gosseract.PSM_OSD_ONLY
	PSMAutoOSD       = gosseract.PSM_AUTO_OSD
	PSMAutoOnly      = gosseract.PSM_AUTO_ONLY
	PSMAuto          = gosseract.PSM_AUTO
	PSMSingleColumn  = gosseract.PSM_SINGLE_COLUMN
	PSMSingleBlockVT = gosseract.PSM_SINGLE_BLOCK_VERT_TEXT
	PSMSingleBlock   = gosseract.PSM_SINGLE_BLOCK
	PSMSingleLine    = gosseract.PSM_SINGLE_LINE
	PSMSingleWord    = gosseract.PSM_SINGLE_WORD
	PSMCircleWord    = gosseract.PSM_CIRCLE_WORD
	PSMSingleChar    = gosseract.PSM_SINGLE_CHAR
	PSMSparseText    = gosseract.PSM_SPARSE_TEXT
	PSMSparseTextOSD = gosseract.PSM_SPARSE_TEXT_OSD
	PSMRawLine       = gosseract.PSM_RAW_LINE
)

// EngineMode selects the recognizer Tesseract loads at Init. Values match
// TessOcrEngineMode in capi.h.
type EngineMode int

// OCR engine modes.
const (
	OEMTesseractOnly EngineMode = iota
	OEMLSTMOnly
	OEMCombined
	OEMDefault
)

// String returns the name ParseEngineMode accepts.
func (m EngineMode) String() string {
	switch m {
	case OEMTesseractOnly:
		return "legacy"
	case OEMLSTMOnly:
		return "lstm"
	case OEMCombined:
		return "combined"
	case OEMDefault:
		return "default"
	}
	return fmt.Sprintf("EngineMode(%d)", int(m))
}

// Level is a layer of the page hierarchy an iterator walks. Each level is
// contained in the one before it.
type Level = gosseract.PageIteratorLevel

// Iterator levels, outermost first.
const (
	LevelBlock    = gosseract.RIL_BLOCK
	LevelPara     = gosseract.RIL_PARA
	LevelTextline = gosseract.RIL_TEXTLINE
	LevelWord     = gosseract.RIL_WORD
	LevelSymbol   = gosseract.RIL_SYMBOL
)

// LevelName returns the lower-case name of an iterator level.
func LevelName(l Level) string {
	switch l {
	case LevelBlock:
		return "block"
	case LevelPara:
		return "para"
	case LevelTextline:
		return "textline"
	case LevelWord:
		return "word"
	case LevelSymbol:
		return "symbol"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel is the inverse of LevelName.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "block":
		return LevelBlock, nil
	case "para", "paragraph":
		return LevelPara, nil
	case "textline", "line":
		return LevelTextline, nil
	case "word", "":
		return LevelWord, nil
	case "symbol":
		return LevelSymbol, nil
	}
	return LevelWord, fmt.Errorf("unknown iterator level %q", s)
}

func validLevel(l Level) bool {
	return l >= LevelBlock && l <= LevelSymbol
}

// BlockType is the layout class of a block found by page analysis.
type BlockType int

// Block types, in native enum order.
const (
	BlockUnknown BlockType = iota
	BlockFlowingText
	BlockHeadingText
	BlockPulloutText
	BlockEquation
	BlockInlineEquation
	BlockTable
	BlockVerticalText
	BlockCaptionText
	BlockFlowingImage
	BlockHeadingImage
	BlockPulloutImage
	BlockHorzLine
	BlockVertLine
	BlockNoise
)

var blockTypeNames = [...]string{
	"unknown", "flowing_text", "heading_text", "pullout_text", "equation",
	"inline_equation", "table", "vertical_text", "caption_text",
	"flowing_image", "heading_image", "pullout_image", "horz_line",
	"vert_line", "noise",
}

func (b BlockType) String() string {
	if b >= 0 && int(b) < len(blockTypeNames) {
		return blockTypeNames[b]
	}
	return fmt.Sprintf("BlockType(%d)", int(b))
}

// IsText reports whether the block holds text.
func (b BlockType) IsText() bool {
	switch b {
	case BlockFlowingText, BlockHeadingText, BlockPulloutText,
		BlockVerticalText, BlockCaptionText, BlockTable:
		return true
	}
	return false
}

// Orientation is the direction "up" points for a block's characters.
type Orientation int

const (
	OrientationPageUp Orientation = iota
	OrientationPageRight
	OrientationPageDown
	OrientationPageLeft
)

func (o Orientation) String() string {
	switch o {
	case OrientationPageUp:
		return "page_up"
	case OrientationPageRight:
		return "page_right"
	case OrientationPageDown:
		return "page_down"
	case OrientationPageLeft:
		return "page_left"
	}
	return fmt.Sprintf("Orientation(%d)", int(o))
}

// WritingDirection is the logical order of graphemes within a line.
type WritingDirection int

const (
	WritingLeftToRight WritingDirection = iota
	WritingRightToLeft
	WritingTopToBottom
)

func (w WritingDirection) String() string {
	switch w {
	case WritingLeftToRight:
		return "left_to_right"
	case WritingRightToLeft:
		return "right_to_left"
	case WritingTopToBottom:
		return "top_to_bottom"
	}
	return fmt.Sprintf("WritingDirection(%d)", int(w))
}

// TextlineOrder is the order in which lines of a block are read.
type TextlineOrder int

const (
	TextlineLeftToRight TextlineOrder = iota
	TextlineRightToLeft
	TextlineTopToBottom
)

func (t TextlineOrder) String() string {
	switch t {
	case TextlineLeftToRight:
		return "left_to_right"
	case TextlineRightToLeft:
		return "right_to_left"
	case TextlineTopToBottom:
		return "top_to_bottom"
	}
	return fmt.Sprintf("TextlineOrder(%d)", int(t))
}

// OrientationInfo is the layout orientation at an iterator's position.
type OrientationInfo struct {
	Orientation      Orientation      `json:"orientation"`
	WritingDirection WritingDirection `json:"writing_direction"`
	TextlineOrder    TextlineOrder    `json:"textline_order"`
	// DeskewAngle is in radians; rotating the block by it makes lines horizontal.
	DeskewAngle float32 `json:"deskew_angle"`
}

// PageSegModeName returns a short name for a page segmentation mode.
func PageSegModeName(m PageSegMode) string {
	switch m {
	case PSMOSDOnly:
		return "osd_only"
	case PSMAutoOSD:
		return "auto_osd"
	case PSMAutoOnly:
		return "auto_only"
	case PSMAuto:
		return "auto"
	case PSMSingleColumn:
		return "single_column"
	case PSMSingleBlockVT:
		return "single_block_vert_text"
	case PSMSingleBlock:
		return "single_block"
	case PSMSingleLine:
		return "single_line"
	case PSMSingleWord:
		return "single_word"
	case PSMCircleWord:
		return "circle_word"
	case PSMSingleChar:
		return "single_char"
	case PSMSparseText:
		return "sparse_text"
	case PSMSparseTextOSD:
		return "sparse_text_osd"
	case PSMRawLine:
		return "raw_line"
	}
	return fmt.Sprintf("PageSegMode(%d)", int(m))
}

// ParseEngineMode maps the names used in config files to an EngineMode.
func ParseEngineMode(s string) (EngineMode, error) {
	switch s {
	case "", "default":
		return OEMDefault, nil
	case "legacy", "tesseract":
		return OEMTesseractOnly, nil
	case "lstm":
		return OEMLSTMOnly, nil
	case "combined":
		return OEMCombined, nil
	}
	return OEMDefault, fmt.Errorf("unknown engine mode %q", s)
}

// ParsePageSegMode accepts a name from PageSegModeName or the numeric value.
func ParsePageSegMode(s string) (PageSegMode, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < int(PSMOSDOnly) || n > int(PSMRawLine) {
			return PSMSingleBlock, fmt.Errorf("page segmentation mode %d out of range", n)
		}
		return PageSegMode(n), nil
	}
	for m := PSMOSDOnly; m <= PSMRawLine; m++ {
		if PageSegModeName(m) == s {
			return m, nil
		}
	}
	return PSMSingleBlock, fmt.Errorf("unknown page segmentation mode %q", s)
}
