package payment

import "net/url"

// RedirectURL is where the student goes once a payment resolves:
// the course dashboard on SUCCESS, the catalog on EXPIRED. Other statuses stay where they are.
func RedirectURL(frontendBaseURL string, status Status, courseID string) string {
	switch status {
	case StatusSuccess:
		if courseID == "" {
			return frontendBaseURL + "/student/courses"
		}
		return frontendBaseURL + "/student/courses/" + url.PathEscape(courseID)
	case StatusExpired:
		return frontendBaseURL + "/courses"
	}
	return ""
}
