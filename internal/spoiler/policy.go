package spoiler

import "github.com/gridlog/gridlog/internal/models"

// Decide maps a spoiler preference and entry state to a visibility level.
// Pure and total: no I/O, no failure modes.
//
//	none               → full (opt-out viewers always see everything)
//	strict,   entry    → full
//	strict,   no entry → hidden
//	moderate, entry    → full
//	moderate, no entry → partial (aggregates only, never ordering/winner)
//
// An unrecognized preference is treated as strict, the protective default.
func Decide(pref models.SpoilerPreference, hasEntry bool) models.Visibility {
	switch pref {
	case models.PreferenceNone:
		return models.VisibilityFull
	case models.PreferenceModerate:
		if hasEntry {
			return models.VisibilityFull
		}
		return models.VisibilityPartial
	case models.PreferenceStrict:
	default:
	}
	if hasEntry {
		return models.VisibilityFull
	}
	return models.VisibilityHidden
}

// DecideForViewer applies the anonymous rule on top of Decide: with no
// identity there is nothing to own a preference or an entry, so strict
// with no entry is forced and the result is always hidden. The default
// for anonymous callers is a parameter of this function, not ambient
// configuration state.
func DecideForViewer(viewer *models.Viewer, hasEntry bool) models.Visibility {
	if viewer == nil {
		return Decide(models.PreferenceStrict, false)
	}
	return Decide(viewer.Preference, hasEntry)
}
