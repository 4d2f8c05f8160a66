package main

import (
	"context"
	"fmt"

	"github.com/acmed/acmed/acme"
	"github.com/acmed/acmed/hook"
)

// hookProver implements acme.ChallengeProver by running the certificate's
// configured hooks for the matching challenge trigger (spec.md §4.6):
// provisioning and cleanup are always delegated to external commands,
// never performed by acmed itself.
type hookProver struct {
	registry *hook.Registry
	hooks    []string
	env      map[string]string
}

func (p *hookProver) Provision(ctx context.Context, proof acme.ChallengeProof) error {
	return p.run(ctx, proof, false)
}

func (p *hookProver) Cleanup(ctx context.Context, proof acme.ChallengeProof) error {
	return p.run(ctx, proof, true)
}

func (p *hookProver) run(ctx context.Context, proof acme.ChallengeProof, clean bool) error {
	trigger, err := triggerFor(proof.ChallengeType, clean)
	if err != nil {
		return err
	}
	resolved, err := p.registry.Resolve(p.hooks, trigger)
	if err != nil {
		return fmt.Errorf("resolve %s hooks: %w", trigger, err)
	}
	return hook.Run(ctx, resolved, hook.Vars{
		Fields: map[string]string{
			"identifier":          proof.Identifier,
			"identifier_tls_alpn": proof.IdentifierTLSALPN,
			"file_name":           proof.FileName,
			"proof":               proof.Proof,
			"challenge":           proof.ChallengeType,
			"key_type":            proof.KeyType,
		},
		Env: p.env,
	})
}

func triggerFor(challengeType string, clean bool) (hook.TriggerType, error) {
	switch challengeType {
	case "http-01":
		if clean {
			return hook.TriggerChallengeHTTP01Clean, nil
		}
		return hook.TriggerChallengeHTTP01, nil
	case "dns-01":
		if clean {
			return hook.TriggerChallengeDNS01Clean, nil
		}
		return hook.TriggerChallengeDNS01, nil
	case "tls-alpn-01":
		if clean {
			return hook.TriggerChallengeTLSALPN01Clean, nil
		}
		return hook.TriggerChallengeTLSALPN01, nil
	default:
		return "", fmt.Errorf("hookprover: unknown challenge type %q", challengeType)
	}
}
