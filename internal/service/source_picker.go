package service

import (
	"strings"

	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/vocab"
)

// detectEntities reads which entities a source holds from its name and file name
func detectEntities(src models.SourceMeta) []string {
	haystack := strings.ToLower(src.Name + " " + src.OriginalFileName)
	var out []string
	for _, m := range vocab.SourceMarkers {
		if strings.Contains(haystack, m.Fragment) && !contains(out, m.Entity) {
			out = append(out, m.Entity)
		}
	}
	return out
}

// pickSourceForEntity returns the first listed source holding the entity.
// There is no fallback to an unrelated source.
func pickSourceForEntity(entity string, sources []models.SourceMeta) (models.SourceMeta, bool) {
	for _, src := range sources {
		if contains(detectEntities(src), entity) {
			return src, true
		}
	}
	return models.SourceMeta{}, false
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
