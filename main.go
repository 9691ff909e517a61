// SPDX-License-Identifier: MPL-2.0

package main

import cmd "svcgraph/cmd/svcgraph"

func main() {
	cmd.Execute()
}
