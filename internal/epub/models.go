package epub

// MediaTypeXHTML is the manifest media-type of reflowable content documents.
const MediaTypeXHTML = "application/xhtml+xml"

// OPF represents the parsed Open Package Format document.
type OPF struct {
	// BasePath is the directory holding the OPF file within the archive,
	// with a trailing slash, or empty when the OPF sits at the root.
	// Manifest hrefs are relative to it.
	BasePath string

	Title   string
	Creator string

	Manifest map[string]ManifestItem // id -> item
	Spine    []SpineItem
}

// ManifestItem represents an item in the manifest.
type ManifestItem struct {
	ID        string
	Href      string
	MediaType string
}

// SpineItem represents an item reference in the spine. It refers to its
// manifest item by id so the link survives map growth.
type SpineItem struct {
	IDRef string
}

// FullPath prepends the OPF base directory to a manifest href.
func (o *OPF) FullPath(href string) string {
	return o.BasePath + href
}

// HrefByID returns the href of the manifest item with the given id, or ""
// when the id is unknown.
func (o *OPF) HrefByID(id string) string {
	if item, ok := o.Manifest[id]; ok {
		return item.Href
	}
	return ""
}

// IDByHref returns the id of the manifest item with the given href, or ""
// when no item carries it.
func (o *OPF) IDByHref(href string) string {
	for id, item := range o.Manifest {
		if item.Href == href {
			return id
		}
	}
	return ""
}

// SpineIndex returns the spine position of the manifest item with the given
// href, or -1 when no spine entry resolves to it.
func (o *OPF) SpineIndex(href string) int {
	for i, s := range o.Spine {
		if item, ok := o.Manifest[s.IDRef]; ok && item.Href == href {
			return i
		}
	}
	return -1
}
