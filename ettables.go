package main

import (
	"fmt"
	"strconv"
	"strings"

	"d2sedit/errors"
	"d2sedit/stats"
	"d2sedit/tables"
	"d2sedit/types"
	"d2sedit/utils"
)

// An ettable is anything that can be get-ted or set-ted.
type ettable struct {
	name string
	get  func(sd *types.Savedata) string
	set  func(sd *types.Savedata, to string) (string, error)
}

// ettables lists everything get/set know about, in the order dump shows them.
var ettables = make_ettables()

func make_ettables() []*ettable {
	out := []*ettable{
		{"Class", get_class, set_class},
	}
	for _, d := range stats.Catalog {
		if d.Kind == stats.Level {
			out = append(out, &ettable{"Level", get_level, set_level})
			continue
		}
		out = append(out, &ettable{d.Kind.String(), stat_getter(d.Kind), stat_setter(d.Kind)})
	}
	return out
}

func list_ettables() string {
	names := []string{}
	for _, e := range ettables {
		names = append(names, "   "+e.name)
	}
	return strings.Join(names, "\n")
}

// find_ettable matches a user-typed name, so "gold stash", "stash" and "GoldStash" all work.
func find_ettable(what string) (*ettable, error) {
	names := map[int]string{}
	for i, e := range ettables {
		names[i] = e.name
	}
	i, _, err := utils.FuzzyReverseLookup(names, what, "setting")
	if err != nil {
		return nil, fmt.Errorf("%w\nSettables are:\n%s", err, list_ettables())
	}
	return ettables[i], nil
}

func parse_uint(to string, bitsize int, what string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(to), 10, bitsize)
	if err != nil {
		return 0, errors.NewContract(fmt.Sprintf("%q is not a valid value for %v (0..%d)", to, what, uint64(1)<<bitsize-1))
	}
	return v, nil
}

func stat_getter(k stats.Kind) func(sd *types.Savedata) string {
	return func(sd *types.Savedata) string {
		r, _ := sd.Stat(k)
		if !r.Present {
			return "not present"
		}
		return strconv.FormatUint(uint64(r.Value), 10)
	}
}

func stat_setter(k stats.Kind) func(sd *types.Savedata, to string) (string, error) {
	return func(sd *types.Savedata, to string) (string, error) {
		v, err := parse_uint(to, 32, k.String())
		if err != nil {
			return "", err
		}
		if err := sd.SetStat(k, uint32(v)); err != nil {
			return "", err
		}
		return strconv.FormatUint(v, 10), nil
	}
}

// The level lives twice: once in the header, once as an attribute.
func get_level(sd *types.Savedata) string {
	out := strconv.Itoa(int(sd.Level()))
	if r, _ := sd.Stat(stats.Level); r.Present && r.Value != uint32(sd.Level()) {
		out += fmt.Sprintf(" (attribute says %v)", r.Value)
	}
	return out
}

func set_level(sd *types.Savedata, to string) (string, error) {
	v, err := parse_uint(to, 8, "Level")
	if err != nil {
		return "", err
	}
	if err := sd.SetLevel(uint8(v)); err != nil {
		return "", err
	}
	return strconv.FormatUint(v, 10), nil
}

func get_class(sd *types.Savedata) string {
	return sd.Class().String()
}

func set_class(sd *types.Savedata, to string) (string, error) {
	class, name, err := utils.FuzzyReverseLookup(tables.Classes, to, "class")
	if err != nil {
		return "", err
	}
	if err := sd.SetClass(class); err != nil {
		return "", err
	}
	return name, nil
}
