package builtin

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"unicode"

	"github.com/hupe1980/agentgraph/tool"
)

var conditions = []string{"Sunny", "Partly Cloudy", "Cloudy", "Rainy", "Foggy"}

type weatherArgs struct {
	City string `json:"city" description:"The name of the city"`
	Unit string `json:"unit,omitempty" description:"Temperature unit, defaults to fahrenheit" enum:"fahrenheit|celsius"`
}

// Weather returns a simulated weather report tool. A nil rng uses a
// randomly seeded source; pass a seeded *rand.Rand for reproducible output.
func Weather(rng *rand.Rand) *tool.FunctionTool {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	var mu sync.Mutex

	return tool.NewFunctionToolFromStruct(
		"get_weather",
		"Get the current weather for a city.",
		weatherArgs{},
		func(_ context.Context, args map[string]any) (any, error) {
			city, _ := args["city"].(string)
			city = strings.TrimSpace(city)

			if city == "" {
				return nil, errors.New("please provide a valid city name")
			}

			unit, _ := args["unit"].(string)

			mu.Lock()
			temp := 50 + rng.IntN(36)
			cond := conditions[rng.IntN(len(conditions))]
			wind := 5 + rng.IntN(21)
			humidity := 30 + rng.IntN(51)
			mu.Unlock()

			reading := fmt.Sprintf("%d°F", temp)
			if unit == "celsius" {
				reading = fmt.Sprintf("%d°C", (temp-32)*5/9)
			}

			return fmt.Sprintf("Weather in %s: %s, %s, Wind: %dmph, Humidity: %d%%",
				titleCase(city), reading, cond, wind, humidity), nil
		},
	)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}

	return strings.Join(words, " ")
}
