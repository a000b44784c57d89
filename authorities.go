package accounts

// Authority is a role tag granted to an account
type Authority = string

const (
	// AuthorityUser is the default authority every account holds
	AuthorityUser Authority = "user"
	// AuthorityAdmin marks administrative accounts
	AuthorityAdmin Authority = "admin"
)

// IsValidAuthority checks if the authority is one of the predefined tags
func IsValidAuthority(authority Authority) bool {
	switch authority {
	case AuthorityUser, AuthorityAdmin:
		return true
	default:
		return false
	}
}

// DefaultAuthorities returns the set assigned to freshly registered accounts
func DefaultAuthorities() []Authority {
	return []Authority{AuthorityUser}
}

// NormalizeAuthorities drops unknown tags and duplicates, preserving order.
func NormalizeAuthorities(authorities []Authority) []Authority {
	if len(authorities) == 0 {
		return nil
	}

	seen := map[Authority]struct{}{}
	out := make([]Authority, 0, len(authorities))
	for _, authority := range authorities {
		if !IsValidAuthority(authority) {
			continue
		}
		if _, ok := seen[authority]; ok {
			continue
		}
		seen[authority] = struct{}{}
		out = append(out, authority)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}
