package libraryfile

// File is the root of a library import file.
//
//	curator: did:plc:abc123
//	items:
//	  - url: https://example.com/article
//	    title: An article
//	    note: worth a second read
//	    collections: [0190c2a4-...]
type File struct {
	Curator string `yaml:"curator"`
	Items   []Item `yaml:"items"`
}

// Item is one URL to keep in the curator's library.
type Item struct {
	URL         string   `yaml:"url"`
	Title       string   `yaml:"title,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Note        string   `yaml:"note,omitempty"`
	Collections []string `yaml:"collections,omitempty"`
}
