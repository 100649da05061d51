// Package all imports every challenge variant for side effects.
package all

import (
	_ "github.com/lovebughq/ladybug/lib/challenge/questionset"
	_ "github.com/lovebughq/ladybug/lib/challenge/sliderpuzzle"
	_ "github.com/lovebughq/ladybug/lib/challenge/textcaptcha"
)
