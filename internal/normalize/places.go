package normalize

// PlacesErrorTitle is reported when a 200 search carries error_message.
const PlacesErrorTitle = "Error with search"

// PlacesError detects the error_message field Places sends with a 200.
var PlacesError = ErrorMessageField("error_message", PlacesErrorTitle)

// Places returns the search response as-is. Candidates keep the fields the
// request asked for.
func Places(resp *Response) (map[string]any, map[string]any, error) {
	return JSON(resp)
}
