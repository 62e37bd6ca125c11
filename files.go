package hostedauth

import (
	"embed"
)

//go:embed data/templates
var templatesFS embed.FS

// GetTemplatesFS returns the stock auth templates for this package:
// the loading placeholder, a landing page with the login affordance,
// and the signed in welcome view.
func GetTemplatesFS() embed.FS {
	return templatesFS
}
