// SPDX-License-Identifier: MPL-2.0

package main

import cmd "trainctl/cmd/trainctl"

func main() {
	cmd.Execute()
}
