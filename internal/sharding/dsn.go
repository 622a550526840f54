package sharding

import (
	"fmt"
	"net/url"
	"strings"
)

// x509QueryParams are certificate-auth parameters that only apply to the
// control-plane URI and must not be copied onto per-shard connection strings.
var x509QueryParams = []string{
	"authmechanism",
	"authmechanismproperties",
	"tlscertificatekeyfile",
	"tlscertificatekeyfilepassword",
}

// DatabaseName returns the physical database name for a shard,
// e.g. prefix "pos_db" and shard 3 yield "pos_db_3".
func DatabaseName(prefix string, shardID int) string {
	return fmt.Sprintf("%s_%d", prefix, shardID)
}

// ShardDSN rewrites the database path segment of the base connection string
// for the given shard. Credentials, host and the query string (minus
// certificate-auth parameters) are preserved verbatim.
func ShardDSN(baseURI, prefix string, shardID int) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURI))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBaseURI, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: missing scheme or host", ErrInvalidBaseURI)
	}

	u.Path = "/" + DatabaseName(prefix, shardID)

	if u.RawQuery != "" {
		query := u.Query()
		for key := range query {
			for _, stripped := range x509QueryParams {
				if strings.EqualFold(key, stripped) {
					query.Del(key)
				}
			}
		}
		u.RawQuery = query.Encode()
	}

	return u.String(), nil
}
