// SPDX-License-Identifier: Apache-2.0

package main

import "github.com/keepctl/keepctl/cmd"

func main() {
	cmd.Execute()
}
