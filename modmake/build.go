package main

import (
	. "github.com/saylorsolutions/modmake"
)

const (
	datalockVersion = "0.1.0"
)

func main() {
	b := NewBuild()
	b.Generate().DependsOnRunner("tidy", "", Go().ModTidy())
	b.Test().Does(Go().TestAll())

	datalock := NewAppBuild("datalock", "cmd/datalock", datalockVersion)
	datalock.Build(func(gb *GoBuild) {
		gb.
			StripDebugSymbols().
			SetVariable("main", "version", datalockVersion).
			CgoEnabled(false)
	})
	datalock.Variant("windows", "amd64")
	datalock.Variant("linux", "amd64")
	datalock.Variant("linux", "arm64")
	datalock.Variant("darwin", "amd64")
	datalock.Variant("darwin", "arm64")
	b.ImportApp(datalock)

	b.Execute()
}
