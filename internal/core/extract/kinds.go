package extract

import (
	"path/filepath"
	"strings"

	"github.com/davidemeka/ragserve/internal/models"
)

// kindByExt maps known file extensions to a document kind. Anything not
// listed here is KindUnknown and falls back to generic conversion.
var kindByExt = map[string]models.DocumentKind{
	".txt":  models.KindPlainText,
	".md":   models.KindPlainText,
	".pdf":  models.KindPDF,
	".docx": models.KindDocx,
	".doc":  models.KindDocx,
	".csv":  models.KindCSV,
	".png":  models.KindImage,
	".jpg":  models.KindImage,
	".jpeg": models.KindImage,
	".tiff": models.KindImage,
	".mp3":  models.KindAudio,
	".wav":  models.KindAudio,
	".m4a":  models.KindAudio,
	".html": models.KindHTML,
	".htm":  models.KindHTML,
}

// KindFromFilename derives the document kind from the filename extension.
func KindFromFilename(filename string) models.DocumentKind {
	ext := strings.ToLower(filepath.Ext(filename))
	if kind, ok := kindByExt[ext]; ok {
		return kind
	}
	return models.KindUnknown
}
