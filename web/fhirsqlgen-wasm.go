// This is a light wasm wrapper around just the compiler, for embedding the
// ViewDefinition -> T-SQL compilation step in a browser tool. Not part of the
// regular build.
//
//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/aehrc/sof-mssql/compiler"
	"github.com/aehrc/sof-mssql/viewdef"
)

func compile(this js.Value, args []js.Value) interface{} {
	viewJSON := args[0].String()
	testID := args[1].String()
	callback := args[2]

	vd, err := viewdef.Parse([]byte(viewJSON))
	if err != nil {
		callback.Invoke(err.Error(), js.Null())
		return false
	}

	result, err := compiler.Compile(vd, compiler.Options{TestID: testID})
	if err != nil {
		callback.Invoke(err.Error(), js.Null())
		return false
	}

	payload, err := json.Marshal(result)
	if err != nil {
		callback.Invoke(err.Error(), js.Null())
		return false
	}

	callback.Invoke(js.Null(), string(payload))
	return true
}

func main() {
	c := make(chan bool)
	js.Global().Set("_FHIRSQLGEN", js.FuncOf(compile))
	<-c
}
