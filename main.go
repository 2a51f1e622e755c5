// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/ctb/dockstore/cmd/dockstore"

func main() {
	cmd.Execute()
}
