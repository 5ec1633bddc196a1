package model

// PriorArticle is another article by the same author found on the same site.
type PriorArticle struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Date  string `json:"date"`
}

// AuthorInfo is the byline attributed to a URL plus a credibility estimate.
type AuthorInfo struct {
	Name             string         `json:"name"`
	CredibilityScore int            `json:"credibilityScore"`
	PriorArticles    []PriorArticle `json:"priorArticles"`
}
