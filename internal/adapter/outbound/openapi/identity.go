package openapi

import (
	"path"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/i2y/apiportal/internal/domain"
	"github.com/i2y/apiportal/internal/usecase"
)

// Gateway API ids are alphanumeric, so the first underscore separates id from stage.
var fileIdentityPattern = regexp.MustCompile(`^([A-Za-z0-9]+)_([A-Za-z0-9_\-]+)$`)

// ExtractIdentity derives the API id and stage a managed document belongs to.
// It tries the file name convention catalog/<apiId>_<stage>.<ext> first, then the
// Swagger 2 host and basePath, then the OpenAPI 3 first server.
func ExtractIdentity(doc domain.DescriptionDocument) (domain.APIIdentity, bool) {
	if id, ok := IdentityFromKey(doc.Key); ok {
		return id, true
	}
	switch doc.Format {
	case domain.FormatSwagger2:
		if doc.V2 != nil {
			return identityFromHost(doc.V2.Host, doc.V2.BasePath)
		}
	case domain.FormatOpenAPI3:
		if doc.V3 != nil {
			return identityFromServers(doc.V3.Servers)
		}
	}
	return domain.APIIdentity{}, false
}

// IdentityFromKey parses catalog/[unsubscribable_]<apiId>_<stage>.<ext>.
func IdentityFromKey(key string) (domain.APIIdentity, bool) {
	name := path.Base(key)
	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.TrimPrefix(name, usecase.UnsubscribablePrefix)
	m := fileIdentityPattern.FindStringSubmatch(name)
	if m == nil {
		return domain.APIIdentity{}, false
	}
	return domain.APIIdentity{APIID: m[1], Stage: m[2]}, true
}

func identityFromHost(host, basePath string) (domain.APIIdentity, bool) {
	id := domain.APIIdentity{APIID: subdomain(host), Stage: firstSegment(basePath)}
	return id, id.APIID != "" && id.Stage != ""
}

// identityFromServers reads servers[0]. Gateway exports template the stage as
// {basePath} with the real value in variables.basePath.default.
func identityFromServers(servers openapi3.Servers) (domain.APIIdentity, bool) {
	if len(servers) == 0 || servers[0] == nil {
		return domain.APIIdentity{}, false
	}
	server := servers[0]

	var stage string
	if v, ok := server.Variables["basePath"]; ok && v != nil {
		stage = firstSegment(v.Default)
	}
	if stage == "" {
		_, rest := splitHost(server.URL)
		if seg := firstSegment(rest); !strings.Contains(seg, "{") {
			stage = seg
		}
	}
	return identityFromHost(server.URL, "/"+stage)
}

func subdomain(rawURL string) string {
	host, _ := splitHost(rawURL)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	sub, _, found := strings.Cut(host, ".")
	if !found {
		return ""
	}
	return sub
}

// splitHost separates "scheme://host/rest" into host and "/rest".
func splitHost(rawURL string) (string, string) {
	if _, after, ok := strings.Cut(rawURL, "://"); ok {
		rawURL = after
	}
	if i := strings.IndexByte(rawURL, '/'); i >= 0 {
		return rawURL[:i], rawURL[i:]
	}
	return rawURL, ""
}

func firstSegment(p string) string {
	seg, _, _ := strings.Cut(strings.TrimLeft(p, "/"), "/")
	return seg
}
