// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// stormctl - StorM32 gimbal controller serial command tool

package main

import "github.com/Thermoquad/stormctl/cmd"

func main() {
	cmd.Execute()
}
