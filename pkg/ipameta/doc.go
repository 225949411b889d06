// Package ipameta reads metadata out of iOS application archives.
//
// An IPA is a ZIP file with a single application bundle under Payload/.
// This package reads the bundle's Info.plist, inspects the main Mach-O
// executable for its CPU architecture and FairPlay encryption state,
// and copies out the app icons.
//
// # Basic Usage
//
// To process a batch of IPAs:
//
//	x, err := ipameta.NewExtractor("output", os.Stdout)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	results, next := x.Run([]string{"1.ipa", "2.ipa"}, 0)
//
// Every input consumes exactly one sequence number, so next is always
// the start value plus the number of inputs. Pass it to the following
// batch to keep numbers unique. Numbers are not persisted.
//
// # Outputs
//
// For item n with input "Foo.ipa" the output directory receives:
//
//   - Foo_n.ipa: an unchanged copy of the input
//   - n_info.txt: the text report
//   - icon/n_AppIcon*.png: the app icons, byte for byte
package ipameta
