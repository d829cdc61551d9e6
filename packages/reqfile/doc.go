// Package reqfile reads request documents: JSON or YAML files describing a
// single request with method, url, headers, a body and extensions. Documents
// are checked against an embedded JSON schema before conversion.
package reqfile
