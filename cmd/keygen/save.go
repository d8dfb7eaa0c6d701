package main

import (
	"math/rand"
	"os"
	"strconv"
	"text/template"
)

const deviceTemplate = `[
    {
        "id": {{.ID}},
        "colorComponents": [
            0,
            1,
            0,
            1
        ],
        "name": "{{.Name}}",
        "privateKey": "{{.PrivateKey}}",
        "icon": "",
        "isDeployed": true,
        "colorSpaceName": "kCGColorSpaceExtendedSRGB",
        "usesDerivation": false,
        "isActive": false,
        "additionalKeys": []
    }
]
`

func saveDevice(name string, priv string) error {
	t, err := template.New("device").Parse(deviceTemplate)
	if err != nil {
		return err
	}

	f, err := os.Create(name + ".json")
	if err != nil {
		return err
	}
	defer f.Close()

	return t.Execute(f, map[string]string{
		"ID":         randomInt(1000, 999999),
		"Name":       name,
		"PrivateKey": priv,
	})
}

// Returns an int >= min, < max
func randomInt(min, max int) string {
	return strconv.Itoa(min + rand.Intn(max-min))
}
