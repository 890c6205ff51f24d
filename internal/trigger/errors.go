package trigger

import "fmt"

func errNoPrimaryAccount(userID string) error {
	return fmt.Errorf("trigger: user %s has no active primary account", userID)
}

func errUnknownPot(potID string) error {
	return fmt.Errorf("trigger: unknown pot %s", potID)
}

func errUnknownPotName(name string) error {
	return fmt.Errorf("trigger: no pot named %q", name)
}
