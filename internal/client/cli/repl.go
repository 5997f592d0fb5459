package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. App satisfies it;
// tests provide a lightweight stub.
type execIface interface {
	isSignedIn() bool
	SignIn(ctx context.Context) error
	Refresh(ctx context.Context) error
	Profile(ctx context.Context) error
	Patients(ctx context.Context) error
	Patient(ctx context.Context, id string) error
	FAQs(ctx context.Context) error
	Send(ctx context.Context) error
	EditProfile(ctx context.Context) error
	EditPatient(ctx context.Context, id string) error
	Outbox(ctx context.Context) error
	Retry(ctx context.Context, partition, id string) error
	Discard(ctx context.Context, partition, id string) error
	Sync(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL reads commands from scanner and dispatches them to a until EOF or
// "exit". Handlers report their own errors; the loop only prints them.
//
//	Not signed in:
//	  help, signin, faqs, outbox, sync, exit
//
//	Signed in, additionally:
//	  refresh                    pull the guardian, patients and FAQs
//	  profile                    show the guardian profile
//	  patients                   list the guardian's patients
//	  patient <id>               show one patient
//	  send                       queue a message
//	  edit                       edit the guardian profile
//	  editpatient <id>           edit patient details
//	  retry <partition> <id>     give a dead-lettered item another chance
//	  discard <partition> <id>   drop a queued item
//	  logout                     wipe cached records
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("vax %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isSignedIn() {
				printlnFn("Available commands: refresh, profile, patients, patient <id>, faqs, send, edit, editpatient <id>, outbox, retry <partition> <id>, discard <partition> <id>, sync, logout, exit")
			} else {
				printlnFn("Available commands: signin, faqs, outbox, sync, exit")
			}

		case "signin":
			err = a.SignIn(ctx)
		case "faqs":
			err = a.FAQs(ctx)
		case "outbox":
			err = a.Outbox(ctx)
		case "sync":
			err = a.Sync(ctx)

		case "refresh", "profile", "patients", "patient", "send", "edit", "editpatient", "retry", "discard", "logout":
			if !a.isSignedIn() {
				printlnFn("Sign in first (signin)")
				continue
			}
			err = dispatchSignedIn(ctx, a, cmd, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}

func dispatchSignedIn(ctx context.Context, a execIface, cmd string, args []string) error {
	switch cmd {
	case "refresh":
		return a.Refresh(ctx)
	case "profile":
		return a.Profile(ctx)
	case "patients":
		return a.Patients(ctx)
	case "patient", "editpatient":
		if len(args) != 1 {
			printlnFn(fmt.Sprintf("Usage: %s <id>", cmd))
			return nil
		}
		if cmd == "patient" {
			return a.Patient(ctx, args[0])
		}
		return a.EditPatient(ctx, args[0])
	case "send":
		return a.Send(ctx)
	case "edit":
		return a.EditProfile(ctx)
	case "retry", "discard":
		if len(args) != 2 {
			printlnFn(fmt.Sprintf("Usage: %s <messages|profile_edits> <id>", cmd))
			return nil
		}
		if cmd == "retry" {
			return a.Retry(ctx, args[0], args[1])
		}
		return a.Discard(ctx, args[0], args[1])
	case "logout":
		return a.Logout(ctx)
	}
	return nil
}
