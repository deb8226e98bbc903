package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls <image> [path]",
		Short: "list a directory's entries",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/"
			if len(args) == 2 {
				path = args[1]
			}
			v, err := openVolume(args[0], true)
			if err != nil {
				return err
			}
			defer v.Close()

			entries, err := v.ReadDir(path)
			if err != nil {
				return err
			}
			for _, e := range entries {
				st, err := v.Stat(joinPath(path, e.Name))
				if err != nil {
					fmt.Println(colorize("31", e.Name))
					continue
				}
				if st.IsDir() {
					fmt.Println(colorize("34", e.Name+"/"))
				} else {
					fmt.Printf("%10d  %s\n", st.Size(), e.Name)
				}
			}
			return nil
		},
	}
	return cmd
}

func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}
