package browser

import (
	"encoding/json"
	"fmt"
)

// RestoreMarkerKey is set in session storage once preloaded items have been
// applied to a tab. Later navigations in the same tab see it and skip the
// preload, so a login performed after a failed restore is not overwritten.
const RestoreMarkerKey = "__authcache_restored"

// RestoreErrorKey is the window property the preload script sets when
// writing session storage throws. It lives as long as the document.
const RestoreErrorKey = "__authcache_restore_error"

// ScriptRestoreError returns the preload failure of the current document,
// or null.
const ScriptRestoreError = `() => window.` + RestoreErrorKey + ` || null`

// ScriptReadSessionStorage returns every session storage entry as an object.
const ScriptReadSessionStorage = `() => {
  const out = {};
  for (let i = 0; i < window.sessionStorage.length; i++) {
    const key = window.sessionStorage.key(i);
    if (key !== null) {
      out[key] = window.sessionStorage.getItem(key) || "";
    }
  }
  return out;
}`

// ScriptReadSessionItem returns one session storage entry or null.
const ScriptReadSessionItem = `(key) => window.sessionStorage.getItem(key)`

// ScriptLoginCount returns how many logins the shop app performed in the
// current document.
const ScriptLoginCount = `() => (window.demoShop && window.demoShop.loginCount) || 0`

// preloadScript renders the init script that writes items into session
// storage exactly once per tab.
func preloadScript(items map[string]string) (string, error) {
	payload, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode session storage items: %w", err)
	}
	marker, _ := json.Marshal(RestoreMarkerKey)
	errKey, _ := json.Marshal(RestoreErrorKey)
	return fmt.Sprintf(`(function (items) {
  try {
    if (window.sessionStorage.getItem(%[1]s) !== null) {
      return;
    }
    for (const [key, value] of Object.entries(items)) {
      window.sessionStorage.setItem(key, value);
    }
    window.sessionStorage.setItem(%[1]s, "1");
  } catch (e) {
    window[%[3]s] = String((e && e.message) || e);
    console.error("authcache: session storage preload failed", e);
  }
})(%[2]s);`, marker, payload, errKey), nil
}

// StringMap converts an Evaluate result into a string map. Non-string
// values are rendered with fmt.
func StringMap(v interface{}) (map[string]string, error) {
	switch m := v.(type) {
	case nil:
		return map[string]string{}, nil
	case map[string]string:
		out := make(map[string]string, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, nil
	case map[string]interface{}:
		out := make(map[string]string, len(m))
		for k, val := range m {
			switch s := val.(type) {
			case string:
				out[k] = s
			case nil:
				out[k] = ""
			default:
				out[k] = fmt.Sprint(s)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected evaluate result %T", v)
	}
}

// Number converts an Evaluate result into an int.
func Number(v interface{}) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unexpected evaluate result %T", v)
	}
}
